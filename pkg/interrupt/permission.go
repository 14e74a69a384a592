package interrupt

import "github.com/devicelab-dev/comesee-snapshots/pkg/core"

// PermissionMonitorName is the description the photo-permission handler is
// registered under.
const PermissionMonitorName = "System Alerts"

// DefaultAllowLabels are tried in order on permission dialogs.
var DefaultAllowLabels = []string{
	"Allow Access to All Photos",
	"Allow Full Access",
	"Allow",
	"OK",
	"모든 사진 접근 허용",
	"확인",
}

// DefaultDenyLabel is tapped when no allow label is offered.
const DefaultDenyLabel = "Don’t Allow"

// PermissionHandler accepts the first allow label the alert offers, falling
// back to deny. Alerts offering neither are left alone.
func PermissionHandler(allow []string, deny string) Handler {
	allow = append([]string(nil), allow...)
	return func(alert core.Alert) (string, bool) {
		for _, label := range allow {
			if alert.HasButton(label) {
				return label, true
			}
		}
		if deny != "" && alert.HasButton(deny) {
			return deny, true
		}
		return "", false
	}
}
