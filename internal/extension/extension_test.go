package extension_test

import (
	"testing"
	"time"

	"github.com/nexusengine/liveauction/internal/extension"
)

func TestEvaluate_WithinThresholdExtends(t *testing.T) {
	end := time.Unix(1000, 0)
	d := extension.Evaluate(end, time.Unix(985, 0), 30, 30)
	if !d.Extended {
		t.Fatal("expected extension at 15s remaining with 30s threshold")
	}
	if d.NewEndTime.Unix() != 1030 {
		t.Fatalf("NewEndTime = %v, want 1030", d.NewEndTime.Unix())
	}
}

func TestEvaluate_OutsideThresholdNoOp(t *testing.T) {
	end := time.Unix(1000, 0)
	d := extension.Evaluate(end, time.Unix(900, 0), 30, 30)
	if d.Extended {
		t.Fatal("expected no extension with 100s remaining and 30s threshold")
	}
	if d.NewEndTime.Unix() != 1000 {
		t.Fatalf("endTime must not change, got %v", d.NewEndTime.Unix())
	}
}

func TestEvaluate_AtOrAfterEndTimeNoOp(t *testing.T) {
	end := time.Unix(1000, 0)
	d := extension.Evaluate(end, time.Unix(1000, 0), 30, 30)
	if d.Extended {
		t.Fatal("expected no extension once endTime has passed")
	}
}

func TestEvaluate_RepeatedExtensionsAreUnbounded(t *testing.T) {
	end := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		d := extension.Evaluate(end, time.Unix(end.Unix()-10, 0), 30, 30)
		if !d.Extended {
			t.Fatalf("round %d: expected extension", i)
		}
		end = d.NewEndTime
	}
	if end.Unix() != 1000+5*30 {
		t.Fatalf("end = %v, want %v", end.Unix(), 1000+5*30)
	}
}
