package types

// ProjectConfig is the top-level launchcheck.yaml configuration.
type ProjectConfig struct {
	Launcher     LauncherConfig  `yaml:"launcher" json:"launcher"`
	Deployment   PollPolicy      `yaml:"deployment" json:"deployment"`
	Undeployment PollPolicy      `yaml:"undeployment" json:"undeployment"`
	Concurrency  int             `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	Scenarios    []string        `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
	Reports      []ReportConfig  `yaml:"reports,omitempty" json:"reports,omitempty"`
	Telemetry    TelemetryConfig `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// LauncherConfig selects and configures the launcher under test.
type LauncherConfig struct {
	Type          LauncherType         `yaml:"type" json:"type"`
	Region        string               `yaml:"region,omitempty" json:"region,omitempty"`
	Resource      string               `yaml:"resource" json:"resource"`
	Local         *LocalConfig         `yaml:"local,omitempty" json:"local,omitempty"`
	EMR           *EMRConfig           `yaml:"emr,omitempty" json:"emr,omitempty"`
	EMRServerless *EMRServerlessConfig `yaml:"emrServerless,omitempty" json:"emrServerless,omitempty"`
	Breaker       *BreakerConfig       `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// LocalConfig configures the local process launcher.
type LocalConfig struct {
	BaseArgs []string          `yaml:"baseArgs,omitempty" json:"baseArgs,omitempty"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// EMRConfig identifies the cluster steps are added to.
type EMRConfig struct {
	ClusterID string `yaml:"clusterId" json:"clusterId"`
}

// EMRServerlessConfig identifies the EMR Serverless application and role.
type EMRServerlessConfig struct {
	ApplicationID    string `yaml:"applicationId" json:"applicationId"`
	ExecutionRoleARN string `yaml:"executionRoleArn" json:"executionRoleArn"`
}

// BreakerConfig configures the launcher circuit breaker.
type BreakerConfig struct {
	FailThreshold int    `yaml:"failThreshold,omitempty" json:"failThreshold,omitempty"`
	Cooldown      string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"` // e.g. "30s"
}

// ReportConfig defines one suite report sink.
type ReportConfig struct {
	Type      ReportType `yaml:"type" json:"type"`
	Path      string     `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN  string     `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
	QueueURL  string     `yaml:"queueUrl,omitempty" json:"queueUrl,omitempty"`
	TableName string     `yaml:"tableName,omitempty" json:"tableName,omitempty"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}
