package repository

import (
	"testing"

	"github.com/visitrack/visitrack/internal/app/model"
)

func TestDedupScope_FunnelWins(t *testing.T) {
	funnel := uint(7)
	cond, args, ok := dedupScope(&funnel, "3")
	if !ok {
		t.Fatal("expected a scope predicate")
	}
	if cond != "funnel_id = ?" {
		t.Fatalf("cond = %q", cond)
	}
	if len(args) != 1 || args[0] != uint(7) {
		t.Fatalf("args = %v", args)
	}
}

func TestDedupScope_DomainFallback(t *testing.T) {
	cond, args, ok := dedupScope(nil, "3")
	if !ok {
		t.Fatal("expected a scope predicate")
	}
	if cond != "metadata->>? = ?" {
		t.Fatalf("cond = %q", cond)
	}
	if len(args) != 2 || args[0] != model.MetaDomainID || args[1] != "3" {
		t.Fatalf("args = %v", args)
	}
}

func TestDedupScope_BareSubmission(t *testing.T) {
	// Without funnel or domain the window narrows on visitor and event type
	// alone. A metadata predicate here would compare NULL to the empty string
	// and never match a prior row.
	if cond, args, ok := dedupScope(nil, ""); ok {
		t.Fatalf("expected no predicate, got %q %v", cond, args)
	}
}
