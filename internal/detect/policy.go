package detect

import "strings"

// Policy decides which raw classifications count as a detection. The
// allowed-class and confidence rules live here so the rest of the kiosk only
// ever sees admissible detections.
type Policy struct {
	AllowedClasses []string
	MinConfidence  float64
}

// DefaultPolicy returns the stock recycling policy: common container classes
// at a 0.30 confidence floor.
func DefaultPolicy() Policy {
	return Policy{
		AllowedClasses: []string{"water bottle", "pop bottle", "wine bottle", "can", "cup"},
		MinConfidence:  0.3,
	}
}

// Admit reports whether a raw classification passes the policy. Matching is
// a case-insensitive substring check so model variants like "aluminum can"
// still count as "can".
func (p Policy) Admit(d Detection) bool {
	if d.Confidence < p.MinConfidence {
		return false
	}
	label := strings.ToLower(d.Label)
	for _, class := range p.AllowedClasses {
		if strings.Contains(label, class) {
			return true
		}
	}
	return false
}
