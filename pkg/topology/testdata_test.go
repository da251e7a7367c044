package topology

func prefix(n int) PrefixInfo {
	return PrefixInfo{PrefixLength: &n}
}

func ipv4(addr string, length int) map[string]map[string]PrefixInfo {
	return map[string]map[string]PrefixInfo{
		FamilyIPv4: {addr: prefix(length)},
	}
}

// threeRouters is a chain A - B - C with a /24 loopback on every router.
func threeRouters() []DeviceState {
	return []DeviceState{
		{
			Name: "A",
			Interfaces: RawInterfaces{
				"Ethernet0/0": ipv4("10.0.0.1", 30),
				"Loopback0":   ipv4("192.168.1.1", 24),
			},
			Config: `hostname A
!
interface Loopback0
 ip address 192.168.1.1 255.255.255.0
!
interface Ethernet0/0
 description to B
 ip address 10.0.0.1 255.255.255.252
 bfd interval 50 min_rx 50 multiplier 3
!
router ospf 1
 network 10.0.0.0 0.0.0.3 area 0
!
`,
		},
		{
			Name: "B",
			Interfaces: RawInterfaces{
				"Ethernet0/0": ipv4("10.0.0.2", 30),
				"Ethernet0/1": ipv4("10.0.0.5", 30),
				"Ethernet0/2": {"ipv6": {"2001:db8::1": prefix(64)}},
				"Loopback0":   ipv4("192.168.2.1", 24),
			},
			Config: `hostname B
!
interface Loopback0
 ip address 192.168.2.1 255.255.255.0
!
interface Ethernet0/0
 ip address 10.0.0.2 255.255.255.252
!
interface Ethernet0/1
 ip address 10.0.0.5 255.255.255.252
 bfd interval 50 min_rx 50 multiplier 3
!
interface Ethernet0/2
 ipv6 address 2001:db8::1/64
!
`,
		},
		{
			Name: "C",
			Interfaces: RawInterfaces{
				"Ethernet0/1": ipv4("10.0.0.6", 30),
				"Loopback0":   ipv4("192.168.3.1", 24),
			},
			Config: `hostname C
!
interface Ethernet0/1
 ip address 10.0.0.6 255.255.255.252
!
interface Loopback0
 ip address 192.168.3.1 255.255.255.0
!
`,
		},
	}
}
