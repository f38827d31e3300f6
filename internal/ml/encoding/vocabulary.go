package encoding

import (
	"sort"
	"strings"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
)

// vocabulary is the set of values a batch produces, per field.
type vocabulary struct {
	labels  map[string]struct{}
	threads map[string]struct{}
	cc      *addressIndex
	from    *addressIndex
	to      *addressIndex
}

func derive(records []*emaildomain.Message) *vocabulary {
	v := &vocabulary{
		labels:  make(map[string]struct{}),
		threads: make(map[string]struct{}),
		cc:      newAddressIndex(),
		from:    newAddressIndex(),
		to:      newAddressIndex(),
	}
	for _, rec := range records {
		for _, l := range rec.Labels {
			v.labels[l] = struct{}{}
			if strings.Contains(l, "@") {
				v.labels[domainOf(l)] = struct{}{}
			}
		}
		if rec.ThreadID != "" {
			v.threads[rec.ThreadID] = struct{}{}
		}
		for _, a := range rec.Cc {
			v.cc.addWithDomain(a)
		}
		for _, a := range rec.To {
			v.to.addWithDomain(a)
		}
		if rec.From != nil {
			v.from.addWithDomain(*rec.From)
		}
	}
	return v
}

func (v *vocabulary) columns() []string {
	var cols []string
	for l := range v.labels {
		cols = append(cols, PrefixLabels+l)
	}
	for _, e := range v.cc.entries() {
		cols = append(cols, PrefixCc+e)
	}
	for _, e := range v.from.entries() {
		cols = append(cols, PrefixFrom+e)
	}
	for t := range v.threads {
		cols = append(cols, PrefixThreads+t)
	}
	for _, e := range v.to.entries() {
		cols = append(cols, PrefixTo+e)
	}
	sort.Strings(cols)
	if cols == nil {
		cols = []string{}
	}
	return cols
}

// hits lists the derived columns that are 1 for rec.
//
// Labels and threads match exactly. An address column matches when its value
// is a substring of one of the row's addresses, so "@y.com" matches every
// address at y.com, and "b@y.com" also matches "ab@y.com".
func (v *vocabulary) hits(rec *emaildomain.Message) []string {
	var out []string
	for _, l := range rec.Labels {
		if _, ok := v.labels[l]; ok {
			out = append(out, PrefixLabels+l)
		}
	}
	out = append(out, v.cc.matches(PrefixCc, rec.Cc)...)
	if rec.From != nil {
		out = append(out, v.from.matches(PrefixFrom, []string{*rec.From})...)
	}
	if rec.ThreadID != "" {
		if _, ok := v.threads[rec.ThreadID]; ok {
			out = append(out, PrefixThreads+rec.ThreadID)
		}
	}
	out = append(out, v.to.matches(PrefixTo, rec.To)...)
	return out
}

func domainOf(addr string) string {
	return "@" + addr[strings.LastIndex(addr, "@")+1:]
}

// addressIndex answers "which entries are substrings of this address"
// without comparing the address against every entry.
//
// An entry and an address with exactly one "@" each can only overlap with
// the two "@" aligned: the entry's local part is then a suffix of the
// address's local part and the entry's domain a prefix of the address's
// domain. Entries are bucketed by domain so only the prefixes of the
// address's domain are looked up. Anything else falls back to a scan.
type addressIndex struct {
	all       map[string]struct{}
	byDomain  map[string][]string // domain part -> local parts
	irregular []string
}

func newAddressIndex() *addressIndex {
	return &addressIndex{
		all:      make(map[string]struct{}),
		byDomain: make(map[string][]string),
	}
}

func (ix *addressIndex) add(e string) {
	if _, dup := ix.all[e]; dup {
		return
	}
	ix.all[e] = struct{}{}
	local, domain, ok := splitOnce(e)
	if !ok {
		ix.irregular = append(ix.irregular, e)
		return
	}
	ix.byDomain[domain] = append(ix.byDomain[domain], local)
}

func (ix *addressIndex) addWithDomain(addr string) {
	ix.add(addr)
	if strings.Contains(addr, "@") {
		ix.add(domainOf(addr))
	}
}

func (ix *addressIndex) entries() []string {
	out := make([]string, 0, len(ix.all))
	for e := range ix.all {
		out = append(out, e)
	}
	return out
}

// matches returns prefix+entry for every entry contained in any of addrs.
func (ix *addressIndex) matches(prefix string, addrs []string) []string {
	if len(addrs) == 0 || len(ix.all) == 0 {
		return nil
	}
	found := make(map[string]struct{})
	for _, a := range addrs {
		local, domain, ok := splitOnce(a)
		if !ok {
			for e := range ix.all {
				if strings.Contains(a, e) {
					found[e] = struct{}{}
				}
			}
			continue
		}
		for n := 0; n <= len(domain); n++ {
			for _, l := range ix.byDomain[domain[:n]] {
				if strings.HasSuffix(local, l) {
					found[l+"@"+domain[:n]] = struct{}{}
				}
			}
		}
		for _, e := range ix.irregular {
			if strings.Contains(a, e) {
				found[e] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(found))
	for e := range found {
		out = append(out, prefix+e)
	}
	return out
}

// splitOnce splits s around its only "@".
func splitOnce(s string) (local, domain string, ok bool) {
	i := strings.Index(s, "@")
	if i < 0 || strings.LastIndex(s, "@") != i {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
