package application

import (
	"testing"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/go-test/deep"
)

func port(name string) domain.BusinessObjectLight {
	return domain.BusinessObjectLight{ID: "id-" + name, ClassName: "OpticalPort", Name: name}
}

func TestMatchFreePorts(t *testing.T) {
	tests := []struct {
		name  string
		ports []string
		want  []MirrorPair
	}{
		{
			name:  "suffix and prefix names",
			ports: []string{"back-1", "2-OUT", "1-in", "front-1", "1-out", "2-In", "mgmt"},
			want: []MirrorPair{
				{Source: port("1-in"), Target: port("1-out")},
				{Source: port("2-In"), Target: port("2-OUT")},
				{Source: port("front-1"), Target: port("back-1")},
			},
		},
		{
			name:  "in/out before front/back and suffix before prefix",
			ports: []string{"a-front", "a-back", "in-7", "out-7", "a-in", "a-out"},
			want: []MirrorPair{
				{Source: port("a-in"), Target: port("a-out")},
				{Source: port("in-7"), Target: port("out-7")},
				{Source: port("a-front"), Target: port("a-back")},
			},
		},
		{
			name:  "last target in name order wins",
			ports: []string{"1-in", "1-out", "1-out-b"},
			want: []MirrorPair{
				{Source: port("1-in"), Target: port("1-out-b")},
			},
		},
		{
			name:  "prefix names without a family are skipped",
			ports: []string{"in-", "xin-", "out-", "out-x"},
			want:  []MirrorPair{},
		},
		{
			name:  "no partner",
			ports: []string{"1-in", "2-out"},
			want:  []MirrorPair{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ports := make([]domain.BusinessObjectLight, 0, len(tt.ports))
			for _, n := range tt.ports {
				ports = append(ports, port(n))
			}
			if diff := deep.Equal(MatchFreePorts(ports), tt.want); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestMatchMultipleMirrors(t *testing.T) {
	ports := []domain.BusinessObjectLight{
		port("b-out"), port("a-out"), port("a-in"), port("c-out"),
		port("in-1"), port("front-1"), port("back-1"), port("back-2"),
	}
	taken := map[string]bool{"id-c-out": true, "id-back-2": true}

	want := []MultipleMirror{
		{Source: port("a-in"), Targets: []domain.BusinessObjectLight{port("a-out"), port("b-out")}},
		{Source: port("front-1"), Targets: []domain.BusinessObjectLight{port("back-1")}},
	}
	if diff := deep.Equal(MatchMultipleMirrors(ports, taken), want); diff != nil {
		t.Error(diff)
	}

	if hasTargets([]domain.BusinessObjectLight{port("a-in"), port("c-out")}, taken) {
		t.Error("c-out is taken and must not count as a target")
	}
}
