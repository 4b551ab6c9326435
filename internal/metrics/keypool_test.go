package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeBudgets struct {
	status []int
	quota  int
}

func (f *fakeBudgets) Status() []int { return f.status }
func (f *fakeBudgets) Quota() int    { return f.quota }

func TestKeyPoolCollector(t *testing.T) {
	c := NewKeyPoolCollector(&fakeBudgets{status: []int{9900, 0, 10000}, quota: 10000})

	expected := `
# HELP ytproxy_key_budget_quota Daily quota units restored per key on reset
# TYPE ytproxy_key_budget_quota gauge
ytproxy_key_budget_quota 10000
# HELP ytproxy_key_budget_remaining Remaining quota units per key
# TYPE ytproxy_key_budget_remaining gauge
ytproxy_key_budget_remaining{key_index="0"} 9900
ytproxy_key_budget_remaining{key_index="1"} 0
ytproxy_key_budget_remaining{key_index="2"} 10000
# HELP ytproxy_keys_available Keys with a non-zero remaining budget
# TYPE ytproxy_keys_available gauge
ytproxy_keys_available 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics:\n%v", err)
	}
}

func TestKeyPoolCollector_Count(t *testing.T) {
	c := NewKeyPoolCollector(&fakeBudgets{status: []int{1, 2}, quota: 5})
	// 2 per-key series + quota + available
	if n := testutil.CollectAndCount(c); n != 4 {
		t.Errorf("expected 4 series, got %d", n)
	}
}
