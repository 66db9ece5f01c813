package protocol

// Well-known gossip topics. Every node on the network subscribes to the same names,
// so changing one requires a coordinated rollout.
const (
	TopicChat       = "/mycelial/1.0.0/chat"
	TopicDirect     = "/mycelial/1.0.0/direct"
	TopicVouch      = "/mycelial/1.0.0/vouch"
	TopicCredit     = "/mycelial/1.0.0/credit"
	TopicGovernance = "/mycelial/1.0.0/governance"
	TopicResource   = "/mycelial/1.0.0/resource"
)

// Topics returns every topic the relay listens on at start-up.
func Topics() []string {
	return []string{
		TopicChat,
		TopicDirect,
		TopicVouch,
		TopicCredit,
		TopicGovernance,
		TopicResource,
	}
}
