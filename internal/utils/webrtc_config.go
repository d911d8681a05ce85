package utils

import (
	"os"
	"strings"

	"github.com/pion/webrtc/v3"
)

var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// GetWebRTCConfig assembles the ICE server configuration handed to clients
// before they negotiate. STUN and TURN servers come from the environment.
func GetWebRTCConfig() webrtc.Configuration {
	stunServers := defaultSTUNServers
	if custom := os.Getenv("STUN_SERVERS"); custom != "" {
		stunServers = strings.Split(custom, ",")
	}

	var iceServers []webrtc.ICEServer
	for _, stun := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs: []string{strings.TrimSpace(stun)},
		})
	}

	if turnURL := os.Getenv("TURN_URL"); turnURL != "" {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       []string{turnURL},
			Username:   os.Getenv("TURN_USERNAME"),
			Credential: os.Getenv("TURN_PASSWORD"),
		})
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
		BundlePolicy:       webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy:      webrtc.RTCPMuxPolicyRequire,
	}
}
