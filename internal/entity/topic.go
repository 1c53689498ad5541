package entity

// TopologyTopic is the NSQ topic every node publishes its gossiped Update
// to and every client subscribes to for topology discovery.
const TopologyTopic = "ringbroker.topology"
