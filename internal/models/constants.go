package models

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	DetectorKindRemote = "remote"
	DetectorKindNone   = "none"

	OutputConsole = "console"
	OutputFile    = "file"
	OutputKafka   = "kafka"
	OutputMQTT    = "mqtt"

	CommandAddCamera    = "add"
	CommandRemoveCamera = "remove"

	TopicTrafficCycles = "traffic_cycle_events"

	// TrafficFlowCameraType is the upstream type of cameras that watch traffic flow.
	TrafficFlowCameraType = "Trafikflödeskamera"
)
