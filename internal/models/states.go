package models

// States is the allow-list of Malaysian administrative regions a mosque can be
// filed under.
var States = []string{
	"Johor",
	"Kedah",
	"Kelantan",
	"Melaka",
	"Negeri Sembilan",
	"Pahang",
	"Perak",
	"Perlis",
	"Pulau Pinang",
	"Sabah",
	"Sarawak",
	"Selangor",
	"Terengganu",
	"WP Kuala Lumpur",
	"WP Labuan",
	"WP Putrajaya",
}

var stateSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(States))
	for _, s := range States {
		m[s] = struct{}{}
	}
	return m
}()

// IsValidState reports whether s is in the allow-list. Matching is exact.
func IsValidState(s string) bool {
	_, ok := stateSet[s]
	return ok
}
