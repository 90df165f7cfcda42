package handlers

import "net/http"

// Register mounts the SOS, live stream and barcode endpoints on mux and
// returns the registered paths.
func Register(mux *http.ServeMux, sosHandler *SOSHandler, live *LiveHandler, barcodes *BarcodeHandler) []string {
	routes := []struct {
		path    string
		handler http.HandlerFunc
	}{
		// Owner and admin
		{"/api/sos", sosHandler.Cases},
		{"/api/sos/case", sosHandler.GetCase},
		{"/api/sos/cancel", sosHandler.Cancel},
		{"/api/sos/complete", sosHandler.Complete},
		{"/api/sos/export", sosHandler.Export},

		// Rider
		{"/api/sos/accept", sosHandler.Accept},
		{"/api/sos/decline", sosHandler.Decline},
		{"/api/sos/en-route", sosHandler.EnRoute},
		{"/api/sos/arrived", sosHandler.Arrived},
		{"/api/sos/beacon", sosHandler.Beacon},

		{"/api/sos/live", live.Serve},

		{"/api/barcodes", barcodes.Generate},
		{"/api/barcodes/validate", barcodes.Validate},
	}

	paths := make([]string, 0, len(routes))
	for _, r := range routes {
		mux.HandleFunc(r.path, r.handler)
		paths = append(paths, r.path)
	}
	return paths
}
