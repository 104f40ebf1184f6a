package stats

import "testing"

func TestTrackOperationWithLatencyAccumulates(t *testing.T) {
	c := NewAtomicCollector()
	c.TrackOperationWithLatency(OpPut, 100)
	c.TrackOperationWithLatency(OpPut, 300)

	got := c.GetStats()
	if got["put_ops"].(uint64) != 2 {
		t.Fatalf("put_ops = %v, want 2", got["put_ops"])
	}
	latency := got["put_latency"].(map[string]interface{})
	if latency["count"].(uint64) != 2 {
		t.Fatalf("latency count = %v, want 2", latency["count"])
	}
	if latency["min_ns"].(uint64) != 100 || latency["max_ns"].(uint64) != 300 {
		t.Fatalf("latency min/max = %v/%v, want 100/300", latency["min_ns"], latency["max_ns"])
	}
	if latency["avg_ns"].(uint64) != 200 {
		t.Fatalf("latency avg = %v, want 200", latency["avg_ns"])
	}
}

func TestTrackErrorAndBytes(t *testing.T) {
	c := NewAtomicCollector()
	c.TrackError("put_error")
	c.TrackError("put_error")
	c.TrackError("get_error")
	c.TrackBytes(true, 10)
	c.TrackBytes(false, 5)

	got := c.GetStats()
	errs := got["errors"].(map[string]uint64)
	if errs["put_error"] != 2 || errs["get_error"] != 1 {
		t.Fatalf("errors = %+v", errs)
	}
	if got["bytes_written"].(uint64) != 10 || got["bytes_read"].(uint64) != 5 {
		t.Fatalf("bytes read/written = %v/%v", got["bytes_read"], got["bytes_written"])
	}
}
