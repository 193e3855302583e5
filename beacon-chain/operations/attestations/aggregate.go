package attestations

// aggregatePending folds unaggregated attestations into aggregates and
// refreshes the pool gauges. Runs at every third of the slot.
func (s *Service) aggregatePending() {
	if err := s.cfg.Pool.AggregateUnaggregatedAttestations(s.ctx); err != nil {
		log.WithError(err).Error("Could not aggregate unaggregated attestations")
	}
	s.updateMetrics()
}

func (s *Service) updateMetrics() {
	aggregatedAttsCount.Set(float64(s.cfg.Pool.AggregatedAttestationCount()))
	unaggregatedAttsCount.Set(float64(s.cfg.Pool.UnaggregatedAttestationCount()))
	forkchoiceAttsCount.Set(float64(s.cfg.Pool.ForkchoiceAttestationCount()))
}
