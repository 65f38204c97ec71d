package api

import (
	"time"

	"netmoded/internal/netmode"
)

// FromStatus converts a committed mode snapshot plus the cached
// interface view into the public StatusResponse.
func FromStatus(st netmode.ModeState, info netmode.NetInfo) StatusResponse {
	var transitioned string
	if !st.LastTransitionAt.IsZero() {
		transitioned = st.LastTransitionAt.UTC().Format(time.RFC3339)
	}

	var lastErr *ErrorView
	if st.LastError != "" {
		lastErr = &ErrorView{Message: st.LastError, Kind: st.LastErrorKind}
	}

	var checked string
	if !info.CheckedAt.IsZero() {
		checked = info.CheckedAt.UTC().Format(time.RFC3339)
	}

	return StatusResponse{
		Mode:             string(st.Current),
		ManualOverride:   st.ManualOverride,
		LastTransitionAt: transitioned,
		LastError:        lastErr,
		Network: NetworkView{
			SSID:      info.SSID,
			IPAddress: info.IPAddress,
			Signal:    info.Signal,
			Clients:   info.Clients,
			Internet:  info.Internet,
			CheckedAt: checked,
		},
		GeneratedAt: TimeNow().UTC().Format(time.RFC3339),
	}
}

// FromMode converts a committed mode snapshot into the payload returned
// by the network-change endpoints.
func FromMode(st netmode.ModeState) ModeResponse {
	return ModeResponse{
		Mode:           string(st.Current),
		ManualOverride: st.ManualOverride,
		Timestamp:      TimeNow().UTC().Format(time.RFC3339),
	}
}
