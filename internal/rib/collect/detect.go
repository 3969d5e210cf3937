package collect

import (
	"strings"

	"github.com/pkg/errors"
)

// detectVendor infers the device vendor from the capability URIs the
// device advertised in its hello.
func detectVendor(capabilities []string) (string, error) {
	joined := strings.ToLower(strings.Join(capabilities, " "))
	switch {
	case strings.Contains(joined, "cisco"), strings.Contains(joined, "tail-f"):
		return "cisco", nil
	case strings.Contains(joined, "arista"):
		return "arista", nil
	case strings.Contains(joined, "juniper"), strings.Contains(joined, "junos"):
		return "juniper", nil
	case strings.Contains(joined, "huawei"):
		return "", errors.New("huawei devices are not supported")
	case strings.Contains(joined, "nokia"), strings.Contains(joined, "alcatel"):
		return "", errors.New("nokia devices are not supported")
	}
	return "", errors.New("unable to determine vendor from hello capabilities")
}
