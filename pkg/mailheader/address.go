package mailheader

import "strings"

// SplitAddresses splits a To/Cc/From header on ", " and reduces each entry
// to the lower-cased address between angle brackets, if any. Entries without
// an "@" are dropped.
func SplitAddresses(header *string) []string {
	addrs := []string{}
	if header == nil {
		return addrs
	}
	for _, entry := range strings.Split(*header, ", ") {
		if strings.Contains(entry, "@") {
			addrs = append(addrs, AddressOf(entry))
		}
	}
	return addrs
}

// AddressOf returns the bracketed part of "Name <a@b.c>", or the whole entry.
func AddressOf(entry string) string {
	i := strings.Index(entry, "<")
	if i < 0 {
		return strings.ToLower(entry)
	}
	rest := entry[i+1:]
	if j := strings.Index(rest, ">"); j >= 0 {
		rest = rest[:j]
	}
	return strings.ToLower(rest)
}
