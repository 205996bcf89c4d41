package wire

// Scenario is the top-level stress description: one shared map and a set of
// jobs that race producers against consumers on it.
type Scenario struct {
	Capacity int    `json:"capacity,omitempty"`
	Policy   string `json:"policy,omitempty"`
	Jobs     []Job  `json:"jobs"`
}

// Job drives one key, or a batch of generated keys, with a delayed producer
// and a number of consumers. Exactly one of Key and Keys is set.
type Job struct {
	ID          string `json:"id,omitempty"`
	Key         string `json:"key,omitempty"`
	Keys        int    `json:"keys,omitempty"`
	Value       string `json:"value"`
	Consumers   int    `json:"consumers,omitempty"`
	Delay       string `json:"delay,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	NonBlocking bool   `json:"non_blocking,omitempty"`
}
