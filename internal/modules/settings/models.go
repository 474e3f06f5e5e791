package settings

// SettingDefaults holds the default values for the compliance engine
// settings stored in the settings table. config.UpdateFromSettings reads
// price_staleness_hours, portfolio_sweep_interval_minutes,
// audit_archival_bucket and audit_archival_region once, at startup; a change
// to the table takes effect on the next start.
var SettingDefaults = map[string]interface{}{
	// Stale-price detector
	"price_staleness_hours": 24.0, // a security's latest price older than this is flagged stale

	// Scheduler cadence
	"portfolio_sweep_interval_minutes": 60.0, // full-portfolio compliance sweep cadence
	"wal_checkpoint_interval_minutes":  15.0,
	"audit_archival_hour":              2.0, // daily audit export hour (0-23, Eastern)

	// S3 audit archival
	"audit_archival_enabled": 1.0,
	"audit_archival_bucket":  "",
	"audit_archival_region":  "us-east-1",
}

// StringSettings defines which settings are treated as strings rather than
// numbers when read back from the settings table.
var StringSettings = map[string]bool{
	"audit_archival_bucket": true,
	"audit_archival_region": true,
}

// SettingDescriptions holds human-readable descriptions for settings whose
// key alone doesn't make their meaning obvious.
var SettingDescriptions = map[string]string{
	"price_staleness_hours": "hours after which a security's latest price is flagged stale on /system/health",
}

// SettingUpdate represents a setting value update request.
type SettingUpdate struct {
	Value interface{} `json:"value"`
}
