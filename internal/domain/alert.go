package domain

// Alert event classes. The class is part of the dedupe key, so repeated
// alerts of the same class for one instrument collapse into the latest.
const (
	AlertClassPriceChange   = "PRICE_CHANGE"
	AlertClassDepthDrop     = "DEPTH_DROP"
	AlertClassDepthCollapse = "DEPTH_COLLAPSE"
	AlertClassQueueGrowing  = "QUEUE_GROWING"
)

// Alert is a compact notification payload handed to the push collaborator.
type Alert struct {
	Instrument string
	Class      string
	Title      string
	Body       string
}

// DedupeKey collapses repeated identical alerts on the delivery side.
func (a Alert) DedupeKey() string {
	return a.Instrument + "-" + a.Class
}
