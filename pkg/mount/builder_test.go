package mount

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestBuilder_WithPrivate(t *testing.T) {
	b := NewBuilder().WithPrivate("/", true)
	if len(b.Mounts) != 1 {
		t.Fatalf("expected 1 mount, got %d", len(b.Mounts))
	}
	m := b.Mounts[0]
	if m.Target != "/" || m.FsType != "" {
		t.Errorf("unexpected mount: %+v", m)
	}
	if m.Flags != unix.MS_PRIVATE|unix.MS_REC {
		t.Errorf("expected recursive private flags, got %x", m.Flags)
	}
	if !m.IsPrivate() {
		t.Errorf("expected private propagation")
	}
}

func TestBuilder_WithProc(t *testing.T) {
	b := NewBuilder().WithProc("/proc")
	if len(b.Mounts) != 1 {
		t.Fatalf("expected 1 mount, got %d", len(b.Mounts))
	}
	m := b.Mounts[0]
	if m.FsType != "proc" || m.Source != "proc" || m.Target != "/proc" {
		t.Errorf("unexpected mount: %+v", m)
	}
	if m.IsReadOnly() || m.IsPrivate() {
		t.Errorf("expected plain read-write proc mount")
	}
}

func TestNewPIDNamespaceBuilder(t *testing.T) {
	b := NewPIDNamespaceBuilder()
	want := "Mounts: rprivate[/], proc[/proc:rw]"
	if got := b.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMount_String(t *testing.T) {
	tests := []struct {
		m    Mount
		want string
	}{
		{
			m:    Mount{Target: "/mnt", Flags: unix.MS_PRIVATE},
			want: "private[/mnt]",
		},
		{
			m:    Mount{Source: "proc", Target: "/proc", FsType: "proc", Flags: unix.MS_RDONLY},
			want: "proc[/proc:ro]",
		},
		{
			m:    Mount{Source: "src", Target: "dst", FsType: "other", Flags: 0, Data: "data"},
			want: "mount[other,src:dst:0,data]",
		},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
