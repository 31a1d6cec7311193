package metric

import "testing"

func TestInitialValue(t *testing.T) {
	var m LinkMetric

	if v := m.Value(); v != 16*Unit {
		t.Fatalf("expected initial value %d, got %d", 16*Unit, v)
	}

	if m.Samples() != 0 {
		t.Fatalf("expected 0 samples, got %d", m.Samples())
	}
}

func TestUpdateTXFirstSample(t *testing.T) {
	var m LinkMetric

	m.UpdateTX(4)

	if v := m.Value(); v != 4*Unit {
		t.Fatalf("first sample should set value directly: expected %d, got %d", 4*Unit, v)
	}

	if m.Samples() != 1 {
		t.Fatalf("expected 1 sample, got %d", m.Samples())
	}
}

func TestUpdateTXEWMA(t *testing.T) {
	var m LinkMetric

	m.UpdateTX(4) // acc = 4*16 = 64
	m.UpdateTX(2) // acc = (2*16*6 + 64*10) / 16 = (192 + 640) / 16 = 52

	if v := m.Value(); v != 52 {
		t.Fatalf("expected EWMA value 52, got %d", v)
	}
}

func TestUpdateTXZeroIgnored(t *testing.T) {
	var m LinkMetric

	m.UpdateTX(0)

	if m.Samples() != 0 {
		t.Fatalf("n==0 must be ignored, got %d samples", m.Samples())
	}

	if v := m.Value(); v != 16*Unit {
		t.Fatalf("n==0 must not change the value, got %d", v)
	}
}

func TestUpdateTXFailDoublesAttempts(t *testing.T) {
	var direct, viaFail LinkMetric

	direct.UpdateTX(6)
	viaFail.UpdateTXFail(3)

	if direct.Value() != viaFail.Value() {
		t.Fatalf("UpdateTXFail(3) should equal UpdateTX(6): %d != %d", viaFail.Value(), direct.Value())
	}
}

func TestSamplesSaturate(t *testing.T) {
	var m LinkMetric

	for i := 0; i < 300; i++ {
		m.UpdateTX(1)
	}

	if m.Samples() != 255 {
		t.Fatalf("expected samples to saturate at 255, got %d", m.Samples())
	}
}

func TestUpdateRXNoop(t *testing.T) {
	var m LinkMetric

	m.UpdateTX(4)
	before := m.Value()

	m.UpdateRX()

	if m.Value() != before {
		t.Fatalf("UpdateRX must be a no-op, value changed from %d to %d", before, m.Value())
	}
}

func TestReset(t *testing.T) {
	var m LinkMetric

	m.UpdateTX(4)
	m.Reset()

	if v := m.Value(); v != 16*Unit {
		t.Fatalf("expected reset value %d, got %d", 16*Unit, v)
	}

	if m.Samples() != 0 {
		t.Fatalf("expected 0 samples after reset, got %d", m.Samples())
	}
}
