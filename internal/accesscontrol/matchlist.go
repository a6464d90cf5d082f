package accesscontrol

import (
	"fmt"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"

	"github.com/AikidoSec/ratelimit-go/internal/types"
)

// MatchList holds single addresses and CIDR blocks for both IP versions.
type MatchList struct {
	Name   string
	TrieV4 *ipaddr.IPv4AddressTrie
	TrieV6 *ipaddr.IPv6AddressTrie
	Count  int
}

func (list *MatchList) Matches(ip *ipaddr.IPAddress) bool {
	if list == nil || ip == nil || list.Count == 0 {
		return false
	}

	return (ip.IsIPv4() && list.TrieV4.ElementContains(ip.ToIPv4())) ||
		(ip.IsIPv6() && list.TrieV6.ElementContains(ip.ToIPv6()))
}

// BuildMatchList parses every entry. An entry that is not an address or CIDR
// block fails the whole list.
func BuildMatchList(name string, entries []string) (*MatchList, error) {
	list := &MatchList{
		Name:   name,
		TrieV4: &ipaddr.IPv4AddressTrie{},
		TrieV6: &ipaddr.IPv6AddressTrie{},
	}

	for _, entry := range entries {
		ip, err := Parse(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %s entry %q: %v", types.ErrInvalidPattern, name, entry, err)
		}

		if ip.IsIPv4() {
			list.TrieV4.Add(ip.ToIPv4())
		} else {
			list.TrieV6.Add(ip.ToIPv6())
		}
		list.Count++
	}

	return list, nil
}

// Parse accepts an IPv4 or IPv6 address or CIDR block. Empty input is an error
// rather than the loopback address.
func Parse(ip string) (*ipaddr.IPAddress, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, fmt.Errorf("empty address")
	}

	addr, err := ipaddr.NewIPAddressString(ip).ToAddress()
	if err != nil {
		return nil, err
	}
	if addr == nil || !(addr.IsIPv4() || addr.IsIPv6()) {
		return nil, fmt.Errorf("not an ip address")
	}
	return addr, nil
}
