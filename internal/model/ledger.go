package model

// Payment is one installment received from a client.
type Payment struct {
	ID        int64  `json:"id"`
	ClientID  int64  `json:"client_id"`
	Timestamp string `json:"timestamp"`
	Amount    int64  `json:"amount"`
}

// LogEntry is one line of a client's audit trail.
type LogEntry struct {
	ID          int64  `json:"id"`
	ClientID    int64  `json:"client_id"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// Neighborhood groups streets. Names are unique, case-insensitively.
type Neighborhood struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Street belongs to a neighborhood and orders its clients by visit order.
type Street struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	NeighborhoodID int64  `json:"neighborhood_id"`
}

// RecentLogLimit is the number of audit entries returned per client.
const RecentLogLimit = 50
