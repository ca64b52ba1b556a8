package model

// ProviderID identifies one upstream resale API.
type ProviderID string

const (
	ProviderSevenProxy  ProviderID = "711"
	ProviderProxySeller ProviderID = "proxyseller"
	ProviderLightning   ProviderID = "lightning"
	ProviderGoProxy     ProviderID = "goproxy"
)

func (p ProviderID) String() string {
	return string(p)
}

// ProviderParams holds the per-provider purchase parameters a Service carries.
// One closed struct instead of an opaque blob: each adapter reads only the
// fields its upstream understands.
type ProviderParams struct {
	Country     string `json:"country,omitempty"`
	PackageType string `json:"package_type,omitempty"`
	Type        string `json:"type,omitempty"`
	Plan        string `json:"plan,omitempty"`
	Location    string `json:"location,omitempty"`
}
