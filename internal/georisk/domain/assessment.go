// Package domain defines the geographic risk assessment computed per request.
package domain

// ThreatLevel buckets the numeric risk score.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Tier is a country's standing in the three-tier policy.
type Tier string

const (
	TierAllowed Tier = "allowed"
	TierNeutral Tier = "neutral"
	TierBlocked Tier = "blocked"
)

// GeoInfo is what the external geolocation lookup returns for an address.
type GeoInfo struct {
	Country    string
	Region     string
	City       string
	ISP        string
	Org        string
	Proxy      bool
	VPN        bool
	Tor        bool
	Datacenter bool
}

// Assessment is the ephemeral result of scoring one address. RiskScore is
// always within [0, 100].
type Assessment struct {
	IP          string      `json:"ip"`
	Country     string      `json:"country,omitempty"`
	ISP         string      `json:"isp,omitempty"`
	Tier        Tier        `json:"tier"`
	Proxy       bool        `json:"proxy"`
	VPN         bool        `json:"vpn"`
	Tor         bool        `json:"tor"`
	Datacenter  bool        `json:"datacenter"`
	RiskScore   int         `json:"riskScore"`
	ThreatLevel ThreatLevel `json:"threatLevel"`
	Allowed     bool        `json:"allowed"`
	Flagged     bool        `json:"flagged"`
	Reason      string      `json:"reason,omitempty"`  // set when not allowed
	Unknown     bool        `json:"unknown,omitempty"` // lookup failed, defaults applied
}

// Denial reason codes surfaced to callers.
const (
	ReasonGeoBlocked  = "GeoBlocked"
	ReasonGeoHighRisk = "GeoHighRisk"
)

// LevelForScore maps a clamped risk score to its threat bucket.
func LevelForScore(score int) ThreatLevel {
	switch {
	case score >= 90:
		return ThreatCritical
	case score >= 70:
		return ThreatHigh
	case score >= 40:
		return ThreatMedium
	default:
		return ThreatLow
	}
}
