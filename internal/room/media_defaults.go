package room

import (
	"roomclient/internal/config"
	"roomclient/internal/constants"
	"roomclient/internal/media"
)

// mediaWebcamDefaults builds the UpdateWebcamOptions startWebcam uses on
// initial join, derived from the room's configured simulcast profile
// table and medium resolution tier.
func mediaWebcamDefaults(cfg *config.Config) media.UpdateWebcamOptions {
	profiles := make([]media.SimulcastProfile, 0, len(cfg.Room.SimulcastProfiles))
	for _, p := range cfg.Room.SimulcastProfiles {
		profiles = append(profiles, media.SimulcastProfile{Width: p.Width, ScaleLayers: p.ScaleLayers})
	}
	return media.UpdateWebcamOptions{
		Start:           true,
		NewResolution:   constants.ResolutionMedium,
		NewFrameRate:    30,
		UseSimulcast:    cfg.Room.Simulcast,
		SimulcastTable:  profiles,
		NetworkPriority: constants.NetworkPriority(cfg.Room.NetworkPriorities.MainVideo),
	}
}

// mediaMicOptions builds the UpdateMicOptions startMic uses.
func mediaMicOptions(start bool) media.UpdateMicOptions {
	return media.UpdateMicOptions{Start: start}
}
