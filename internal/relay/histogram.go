package relay

// QueueDepthHistogram buckets a per-recipient undelivered-message count map
// into the four buckets spec §4.6 names: "0", "1-5", "6-20", "21+". users
// lists every registered identity so recipients with no queued messages
// still land in the "0" bucket instead of being silently dropped.
func QueueDepthHistogram(users []string, undelivered map[string]int) map[string]int {
	hist := map[string]int{"0": 0, "1-5": 0, "6-20": 0, "21+": 0}
	for _, u := range users {
		hist[bucket(undelivered[u])]++
	}
	return hist
}

func bucket(n int) string {
	switch {
	case n == 0:
		return "0"
	case n <= 5:
		return "1-5"
	case n <= 20:
		return "6-20"
	default:
		return "21+"
	}
}
