package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/DrC0ns0le/net-topo/internal/topology"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

var (
	daemonURL   = flag.String("daemon.url", "http://localhost:8080", "base url of the topology daemon api")
	elasticPort = flag.Int("elastic.port", 9200, "port for elastic server")
	elasticHost = flag.String("elastic.host", "localhost", "host for elastic server")
	elasticUser = flag.String("elastic.user", "elastic", "user for elastic server")
	elasticPass = flag.String("elastic.pass", "password", "pass for elastic server")

	updateInterval = flag.Duration("update.interval", 1*time.Minute, "interval for polling the topology")

	printLinks = flag.Bool("print.links", false, "print links")

	logger = logging.NewDefaultLogger()
)

func main() {

	flag.Parse()

	// Configure the Elasticsearch client
	cfg := elasticsearch.Config{
		Addresses: []string{
			fmt.Sprintf("https://%s:%d", *elasticHost, *elasticPort),
		},
		Username: *elasticUser,
		Password: *elasticPass,

		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec
			},
		},
	}

	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		log.Fatalf("Error creating Elasticsearch client: %s", err)
	}

	res, err := esClient.Info()
	if err != nil {
		log.Fatalf("Error getting response: %s", err)
	}
	defer res.Body.Close()

	prevLinks, err := initializeCacheFromES(esClient)
	if err != nil {
		log.Fatalf("Failed to initialize cache from Elasticsearch: %v", err)
	}

	ticker := time.NewTicker(*updateInterval)
	defer ticker.Stop()

	logger.Infof("running initial topology check")
	if err := runTopologyCheck(esClient, prevLinks); err != nil {
		log.Printf("Error in topology check: %v", err)
	}

	for range ticker.C {
		logger.Infof("running topology check")
		if err := runTopologyCheck(esClient, prevLinks); err != nil {
			log.Printf("Error in topology check: %v", err)
		}
	}

}

// topologyResponse mirrors the daemon's GET /api/topology payload.
type topologyResponse struct {
	BuiltAt       time.Time               `json:"built_at"`
	DirectEdges   []topology.DirectEdge   `json:"direct_links"`
	ProtocolEdges []topology.ProtocolEdge `json:"protocol_links"`
}

// LinkRecord is one historical row in the topology-history index.
type LinkRecord struct {
	Timestamp     time.Time `json:"@timestamp"`
	SourceRouter  string    `json:"source_router"`
	TargetRouter  string    `json:"target_router"`
	Network       string    `json:"network,omitempty"`
	Protocols     []string  `json:"protocols"`
	ProtocolsStr  string    `json:"protocols_str"`
	LinkChanged   bool      `json:"link_changed"`
	LastProtocols []string  `json:"last_protocols,omitempty"`
}

func initializeCacheFromES(esClient *elasticsearch.Client) (map[string][]string, error) {
	prevLinks := make(map[string][]string)

	// Query Elasticsearch for the most recent link records
	res, err := esClient.Search(
		esClient.Search.WithIndex("topology-history"),
		esClient.Search.WithSort("@timestamp:desc"),
		esClient.Search.WithSize(250),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query Elasticsearch: %v", err)
	}
	defer res.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse Elasticsearch response: %v", err)
	}

	hits, _ := result["hits"].(map[string]interface{})["hits"].([]interface{})
	for _, hit := range hits {
		source := hit.(map[string]interface{})["_source"].(map[string]interface{})
		key := linkKey(fmt.Sprintf("%v", source["source_router"]), fmt.Sprintf("%v", source["target_router"]))
		rawProtocols, _ := source["protocols"].([]interface{})
		protocols := make([]string, len(rawProtocols))
		for i, v := range rawProtocols {
			protocols[i], _ = v.(string)
		}
		prevLinks[key] = protocols
	}

	return prevLinks, nil
}

func runTopologyCheck(esClient *elasticsearch.Client, prevLinks map[string][]string) error {
	topo, err := fetchTopology()
	if err != nil {
		return fmt.Errorf("failed to fetch topology: %v", err)
	}

	// Group protocols per unordered router pair
	linkProtocols := make(map[string][]string)
	linkNetworks := make(map[string]string)
	for _, edge := range topo.DirectEdges {
		key := linkKey(edge.LocalRouter, edge.RemoteRouter)
		if _, ok := linkNetworks[key]; !ok {
			linkNetworks[key] = edge.Network
		}
	}
	for _, edge := range topo.ProtocolEdges {
		key := linkKey(edge.RouterA, edge.RouterB)
		linkProtocols[key] = append(linkProtocols[key], string(edge.Protocol))
	}
	for key := range linkNetworks {
		if len(linkProtocols[key]) == 0 {
			linkProtocols[key] = []string{"directly connected"}
		}
	}

	keys := make([]string, 0, len(linkProtocols))
	for key := range linkProtocols {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	history := make([]LinkRecord, 0, len(keys))
	for _, key := range keys {
		protocols := linkProtocols[key]
		sort.Strings(protocols)

		lastProtocols, exists := prevLinks[key]
		changed := exists && !equalStrings(lastProtocols, protocols)

		parts := strings.SplitN(key, "|", 2)
		record := LinkRecord{
			Timestamp:     time.Now(),
			SourceRouter:  parts[0],
			TargetRouter:  parts[1],
			Network:       linkNetworks[key],
			Protocols:     protocols,
			ProtocolsStr:  strings.Join(protocols, ", "),
			LinkChanged:   changed,
			LastProtocols: lastProtocols,
		}
		history = append(history, record)

		prevLinks[key] = protocols

		if *printLinks {
			fmt.Printf("\nLink: %s\n", key)
			fmt.Printf(" Network: %s\n", record.Network)
			fmt.Printf(" Protocols: %v\n", protocols)
		}
	}

	return indexRecords(esClient, history)
}

func fetchTopology() (*topologyResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *daemonURL+"/api/topology", nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s", res.Status)
	}

	var topo topologyResponse
	if err := json.NewDecoder(res.Body).Decode(&topo); err != nil {
		return nil, err
	}
	return &topo, nil
}

func indexRecords(esClient *elasticsearch.Client, history []LinkRecord) error {
	bulkIndexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         "topology-history",
		Client:        esClient,
		FlushBytes:    5242880, // 5MB
		FlushInterval: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %v", err)
	}

	for _, record := range history {
		data, err := json.Marshal(record)
		if err != nil {
			logger.Errorf("Failed to marshal link record: %v", err)
			continue
		}

		err = bulkIndexer.Add(
			context.Background(),
			esutil.BulkIndexerItem{
				Action: "index",
				Body:   bytes.NewReader(data),
				OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
					if err != nil {
						logger.Errorf("Failed to index link record: %v", err)
					}
				},
			},
		)
		if err != nil {
			logger.Errorf("Failed to add record to bulk indexer: %v", err)
		}
	}

	if err := bulkIndexer.Close(context.Background()); err != nil {
		return fmt.Errorf("failed to close bulk indexer: %v", err)
	}

	return nil
}

func linkKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
