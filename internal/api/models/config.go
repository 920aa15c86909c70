package models

// Redacted replaces secret values in config responses.
const Redacted = "<redacted>"

// ConfigResponse is the API response for GET /config: every config key with
// its effective value.
type ConfigResponse struct {
	Values map[string]string `json:"values"`
}

// ProfileResponse is the API response for GET /profile: the keys stored in
// the SQLite profile and the profile version.
type ProfileResponse struct {
	Version int64             `json:"version"`
	Values  map[string]string `json:"values"`
}
