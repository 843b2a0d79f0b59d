package metrics

// Recorder adapts the registered instruments to the observer
// interfaces consumed by the pipeline, the oracle adapters and the
// repositories. Prometheus counters are safe for concurrent use, so
// the adapter carries no state of its own.
type Recorder struct {
	m *Metrics
}

// Recorder returns the instrument adapter for m.
func (m *Metrics) Recorder() *Recorder {
	return &Recorder{m: m}
}

func (r *Recorder) EventsNormalized(n int) {
	r.m.EventsNormalized.Add(float64(n))
}

func (r *Recorder) EventUnclassifiable() {
	r.m.EventsUnclassifiable.Inc()
}

func (r *Recorder) EventUnpriced() {
	r.m.EventsUnpriced.Inc()
}

func (r *Recorder) AssetAborted(asset string) {
	r.m.AssetsAborted.WithLabelValues(asset).Inc()
}

func (r *Recorder) EntriesPosted(n int) {
	r.m.EntriesPosted.Add(float64(n))
}

func (r *Recorder) DisposalsMatched(n int) {
	r.m.DisposalsMatched.Add(float64(n))
}

func (r *Recorder) LotsOpened(n int) {
	r.m.LotsOpened.Add(float64(n))
}

func (r *Recorder) OracleLookup(outcome string, seconds float64) {
	r.m.OracleLookups.WithLabelValues(outcome).Inc()
	r.m.OracleDuration.Observe(seconds)
}

func (r *Recorder) PriceCache(outcome string) {
	r.m.PriceCacheHits.WithLabelValues(outcome).Inc()
}

func (r *Recorder) DBQuery(operation, table string) {
	r.m.DBQueries.WithLabelValues(operation, table).Inc()
}

func (r *Recorder) DBError(operation string) {
	r.m.DBErrors.WithLabelValues(operation).Inc()
}
