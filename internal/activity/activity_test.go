package activity

import (
	"errors"
	"testing"
	"time"
)

func newTestIndicator(minVisible time.Duration) (*Indicator, *time.Time) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	i := New()
	i.minVisible = minVisible
	i.now = func() time.Time { return now }
	return i, &now
}

func TestIndicator_Counter(t *testing.T) {
	i, now := newTestIndicator(MinVisible)

	i.Show(1, "")
	i.Show(3, "loading traces")
	if s := i.Status(); !s.Visible || s.Count != 4 || s.Message != "loading traces" {
		t.Fatalf("Status() = %+v", s)
	}

	i.Hide(1)
	if s := i.Status(); !s.Visible || s.Count != 3 {
		t.Fatalf("Status() = %+v", s)
	}

	*now = now.Add(time.Second)
	i.Hide(3)
	if s := i.Status(); s.Visible || s.Count != 0 {
		t.Errorf("Status() = %+v", s)
	}
}

func TestIndicator_HideNonPositiveDismisses(t *testing.T) {
	i, _ := newTestIndicator(time.Hour)
	i.Show(5, "")
	i.Hide(0)
	if s := i.Status(); s.Visible || s.Count != 0 {
		t.Errorf("Status() = %+v", s)
	}
}

func TestIndicator_MinVisible(t *testing.T) {
	i, _ := newTestIndicator(20 * time.Millisecond)
	i.Show(1, "")
	i.Hide(1)
	if !i.Status().Visible {
		t.Fatal("hidden before the minimum visible time")
	}

	deadline := time.Now().Add(2 * time.Second)
	for i.Status().Visible {
		if time.Now().After(deadline) {
			t.Fatal("indicator never hid")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIndicator_ShowCancelsPendingHide(t *testing.T) {
	i, _ := newTestIndicator(10 * time.Millisecond)
	i.Show(1, "")
	i.Hide(1)
	i.Show(1, "again")
	time.Sleep(30 * time.Millisecond)
	if s := i.Status(); !s.Visible || s.Count != 1 {
		t.Errorf("Status() = %+v", s)
	}
}

func TestIndicator_Set(t *testing.T) {
	i, _ := newTestIndicator(0)
	i.Show(4, "")
	i.Set(1, "")
	if s := i.Status(); s.Count != 1 || !s.Visible {
		t.Errorf("Status() = %+v", s)
	}
}

func TestIndicator_Track(t *testing.T) {
	i, now := newTestIndicator(MinVisible)
	want := errors.New("boom")
	err := i.Track("saving", func() error {
		if s := i.Status(); !s.Visible || s.Message != "saving" {
			t.Errorf("Status() inside = %+v", s)
		}
		*now = now.Add(time.Second)
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Track() = %v", err)
	}
	if i.Status().Visible {
		t.Error("still visible after Track")
	}
}
