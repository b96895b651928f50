package application

import (
	"sort"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
)

type portRole int

const (
	roleIn portRole = iota
	roleOut
	roleFront
	roleBack
)

type portFamily int

const (
	familySuffix portFamily = iota
	familyPrefix
)

type nameRule struct {
	token  string
	role   portRole
	family portFamily
}

// nameRules are tried in order; the first token contained in the lowercase name wins.
var nameRules = []nameRule{
	{"-in", roleIn, familySuffix},
	{"-out", roleOut, familySuffix},
	{"-front", roleFront, familySuffix},
	{"-back", roleBack, familySuffix},
	{"in-", roleIn, familyPrefix},
	{"out-", roleOut, familyPrefix},
	{"front-", roleFront, familyPrefix},
	{"back-", roleBack, familyPrefix},
}

// MirrorPair is one suggested or requested single mirror.
type MirrorPair struct {
	Source domain.BusinessObjectLight `json:"source"`
	Target domain.BusinessObjectLight `json:"target"`
}

// MultipleMirror maps one in/front port to every out/back port of its family.
type MultipleMirror struct {
	Source  domain.BusinessObjectLight   `json:"source"`
	Targets []domain.BusinessObjectLight `json:"targets"`
}

type portBuckets map[portFamily]map[portRole][]domain.BusinessObjectLight

func classifyPort(name string) (nameRule, bool) {
	lower := strings.ToLower(name)
	for _, rule := range nameRules {
		if strings.Contains(lower, rule.token) {
			return rule, true
		}
	}
	return nameRule{}, false
}

func bucketPorts(ports []domain.BusinessObjectLight, keep func(domain.BusinessObjectLight, nameRule) bool) portBuckets {
	buckets := portBuckets{
		familySuffix: {},
		familyPrefix: {},
	}
	for _, p := range ports {
		rule, ok := classifyPort(p.Name)
		if !ok || (keep != nil && !keep(p, rule)) {
			continue
		}
		buckets[rule.family][rule.role] = append(buckets[rule.family][rule.role], p)
	}
	for _, roles := range buckets {
		for _, list := range roles {
			sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		}
	}
	return buckets
}

// splitName splits on every occurrence of token and drops trailing empty segments.
func splitName(name, token string) []string {
	parts := strings.Split(strings.ToLower(name), token)
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// familyKey is the part of the name shared by both ports of a mirror: the text before the
// token for suffix names, after it for prefix names.
func familyKey(name, token string, family portFamily) (string, bool) {
	parts := splitName(name, token)
	idx := 0
	if family == familyPrefix {
		idx = 1
	}
	if len(parts) <= idx {
		return "", false
	}
	return parts[idx], true
}

type orderedPairs struct {
	keys  []domain.BusinessObjectLight
	index map[string]int
	value map[string]domain.BusinessObjectLight
}

func newOrderedPairs() *orderedPairs {
	return &orderedPairs{index: map[string]int{}, value: map[string]domain.BusinessObjectLight{}}
}

func (o *orderedPairs) put(k, v domain.BusinessObjectLight) {
	if _, ok := o.index[k.ID]; !ok {
		o.index[k.ID] = len(o.keys)
		o.keys = append(o.keys, k)
	}
	o.value[k.ID] = v
}

func (o *orderedPairs) pairs() []MirrorPair {
	out := make([]MirrorPair, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, MirrorPair{Source: k, Target: o.value[k.ID]})
	}
	return out
}

func pairBuckets(into *orderedPairs, sources, targets []domain.BusinessObjectLight, sourceToken, targetToken string, family portFamily) {
	for _, src := range sources {
		srcKey, ok := familyKey(src.Name, sourceToken, family)
		if !ok {
			continue
		}
		for _, dst := range targets {
			dstKey, ok := familyKey(dst.Name, targetToken, family)
			if ok && srcKey == dstKey {
				into.put(src, dst)
			}
		}
	}
}

// MatchFreePorts pairs free ports by name: "x-in" with "x-out", "in-x" with "out-x" and the
// same for front/back. In/out pairs come first. When several targets match, the last one
// in name order wins.
func MatchFreePorts(ports []domain.BusinessObjectLight) []MirrorPair {
	b := bucketPorts(ports, nil)

	inOut := newOrderedPairs()
	pairBuckets(inOut, b[familySuffix][roleIn], b[familySuffix][roleOut], "-in", "-out", familySuffix)
	pairBuckets(inOut, b[familyPrefix][roleIn], b[familyPrefix][roleOut], "in-", "out-", familyPrefix)

	frontBack := newOrderedPairs()
	pairBuckets(frontBack, b[familySuffix][roleFront], b[familySuffix][roleBack], "-front", "-back", familySuffix)
	pairBuckets(frontBack, b[familyPrefix][roleFront], b[familyPrefix][roleBack], "front-", "back-", familyPrefix)

	return append(inOut.pairs(), frontBack.pairs()...)
}

// MatchMultipleMirrors maps each in port to all out ports of its family and each front port
// to all back ports. Out and back ports listed in taken are not offered as targets.
func MatchMultipleMirrors(ports []domain.BusinessObjectLight, taken map[string]bool) []MultipleMirror {
	b := bucketPorts(ports, func(p domain.BusinessObjectLight, rule nameRule) bool {
		if rule.role == roleOut || rule.role == roleBack {
			return !taken[p.ID]
		}
		return true
	})

	out := make([]MultipleMirror, 0)
	group := func(sources, targets []domain.BusinessObjectLight) {
		if len(targets) == 0 {
			return
		}
		for _, src := range sources {
			out = append(out, MultipleMirror{Source: src, Targets: append([]domain.BusinessObjectLight{}, targets...)})
		}
	}
	group(b[familySuffix][roleIn], b[familySuffix][roleOut])
	group(b[familyPrefix][roleIn], b[familyPrefix][roleOut])
	group(b[familySuffix][roleFront], b[familySuffix][roleBack])
	group(b[familyPrefix][roleFront], b[familyPrefix][roleBack])
	return out
}

// hasTargets reports whether any out or back port is available after filtering.
func hasTargets(ports []domain.BusinessObjectLight, taken map[string]bool) bool {
	for _, p := range ports {
		rule, ok := classifyPort(p.Name)
		if ok && (rule.role == roleOut || rule.role == roleBack) && !taken[p.ID] {
			return true
		}
	}
	return false
}
