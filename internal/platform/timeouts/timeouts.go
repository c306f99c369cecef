// Package timeouts defines shared timeout constants used by worldgen clients.
package timeouts

import "time"

// GRPCDial caps the wait for a world service to report SERVING.
const GRPCDial = 5 * time.Second

// RemoteGenerate caps a single remote Generate call. Large grids take
// seconds to minutes.
const RemoteGenerate = 5 * time.Minute
