package servicenow

import "sort"

// Session is one registered browser session that may hold an authenticated
// login for an instance origin. It is the analogue of an open instance tab:
// sync iterates candidates in rank order until one accepts the request.
type Session struct {
	ID             string `json:"id"`
	Origin         string `json:"origin"`
	Label          string `json:"label,omitempty"`
	CookieFile     string `json:"cookieFile,omitempty"`
	Focused        bool   `json:"focused,omitempty"`
	LastAccessedMs int64  `json:"lastAccessedMs"`
}

// RankSessions orders candidate sessions by likelihood of holding a valid
// authenticated login: the previously-successful session first, then focused
// sessions, then most-recently-accessed. The input is not modified.
func RankSessions(sessions []Session, lastGoodID string) []Session {
	ranked := make([]Session, len(sessions))
	copy(ranked, sessions)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if lastGoodID != "" && (a.ID == lastGoodID) != (b.ID == lastGoodID) {
			return a.ID == lastGoodID
		}
		if a.Focused != b.Focused {
			return a.Focused
		}
		return a.LastAccessedMs > b.LastAccessedMs
	})

	return ranked
}
