package counters

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "nfregex"

type labelledCounters struct {
	direction string
	queue     string
	counters  *Counters
}

// Collector exports registered counters as prometheus counters labelled
// with direction and queue.
type Collector struct {
	descs []*prometheus.Desc
	sets  []labelledCounters

	sync.RWMutex
}

// NewCollector returns a collector. The global counters are registered
// with the direction "global".
func NewCollector() *Collector {

	c := &Collector{
		descs: make([]*prometheus.Desc, counterMax+1),
	}

	for ct := CounterType(0); ct <= counterMax; ct++ {
		c.descs[ct] = prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", ct.String()+"_total"),
			"Number of "+ct.String()+".",
			[]string{"direction", "queue"},
			nil,
		)
	}

	c.sets = append(c.sets, labelledCounters{direction: "global", counters: defaultCounters})

	return c
}

// Register adds the counters of a queue.
func (c *Collector) Register(direction string, queue uint16, counters *Counters) {

	c.Lock()
	defer c.Unlock()

	c.sets = append(c.sets, labelledCounters{
		direction: direction,
		queue:     strconv.Itoa(int(queue)),
		counters:  counters,
	})
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {

	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {

	c.RLock()
	defer c.RUnlock()

	for _, set := range c.sets {
		for ct, v := range set.counters.GetCounters() {
			ch <- prometheus.MustNewConstMetric(c.descs[ct], prometheus.CounterValue, float64(v), set.direction, set.queue)
		}
	}
}
