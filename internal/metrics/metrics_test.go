package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHelpersIncrementCounters(t *testing.T) {
	InitMetrics()
	InitMetrics()

	before := testutil.ToFloat64(RedemptionsTotal.WithLabelValues("cap_reached"))
	ObserveRedemption("cap_reached")
	if got := testutil.ToFloat64(RedemptionsTotal.WithLabelValues("cap_reached")); got != before+1 {
		t.Fatalf("redemption counter want %v got %v", before+1, got)
	}

	hitsBefore := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("benefit_list", "hit"))
	ObserveCacheLookup("benefit_list", true)
	ObserveCacheLookup("benefit_list", false)
	if got := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("benefit_list", "hit")); got != hitsBefore+1 {
		t.Fatalf("cache hit counter want %v got %v", hitsBefore+1, got)
	}

	syncBefore := testutil.ToFloat64(CounterSyncTotal.WithLabelValues("failed"))
	ObserveCounterSync(false)
	if got := testutil.ToFloat64(CounterSyncTotal.WithLabelValues("failed")); got != syncBefore+1 {
		t.Fatalf("counter sync failed counter want %v got %v", syncBefore+1, got)
	}
}
