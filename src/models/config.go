package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name" validate:"required"`
	Host       string            `yaml:"host" validate:"required"`
	Port       int               `yaml:"port" validate:"min=1,max=65535"`
	LogLevel   string            `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN WARNING ERROR debug info warn warning error"`
	Network    MNetworkConfig    `yaml:"network"`
	MarketData MMarketDataConfig `yaml:"market_data"`
	Calendar   MCalendarConfig   `yaml:"calendar"`
	Cron       MCronConfig       `yaml:"cron"`
	Mailchimp  MMailchimpConfig  `yaml:"mailchimp"`
	Strapi     MStrapiConfig     `yaml:"strapi"`
	Alerts     MAlertConfig      `yaml:"alerts"`
	Email      MEmailConfig      `yaml:"email"`
}

// GetLogLevel satisfies logger.LevelSource.
func (c *MConfig) GetLogLevel() string {
	if c == nil {
		return ""
	}
	return c.LogLevel
}

type MNetworkConfig struct {
	RequestTimeout    int     `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
	UserAgent         string  `yaml:"user_agent"`
}

type MMarketDataConfig struct {
	APIKey                   string `yaml:"api_key"`
	BaseURL                  string `yaml:"base_url" validate:"required,url"`
	Symbol                   string `yaml:"symbol" validate:"required"`
	CacheTTLSeconds          int    `yaml:"cache_ttl_seconds" validate:"gt=0"`
	BroadcastIntervalSeconds int    `yaml:"broadcast_interval_seconds" validate:"gt=0"`
}

type MCalendarConfig struct {
	HolidaysFile string `yaml:"holidays_file" validate:"required"`
	ExchangeMIC  string `yaml:"exchange_mic"`
	Timezone     string `yaml:"timezone" validate:"required"`
}

type MCronConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Timezone string `yaml:"timezone" validate:"required"`
	APIKey   string `yaml:"api_key"`
	DryRun   bool   `yaml:"dry_run"`
}

type MMailchimpConfig struct {
	APIKey       string `yaml:"api_key"`
	ServerPrefix string `yaml:"server_prefix"`
	ListID       string `yaml:"list_id"`
	BaseURL      string `yaml:"base_url"` // Optional, derived from the server prefix when empty
	FromName     string `yaml:"from_name" validate:"required"`
	ReplyTo      string `yaml:"reply_to" validate:"required,email"`
	PageSize     int    `yaml:"page_size" validate:"gt=0,lte=1000"`
}

type MStrapiConfig struct {
	APIURL     string `yaml:"api_url"`
	APIToken   string `yaml:"api_token"`
	Collection string `yaml:"collection" validate:"required"`
	OptInField string `yaml:"opt_in_field" validate:"required"`
	PageSize   int    `yaml:"page_size" validate:"gt=0"`
}

type MAlertConfig struct {
	Enabled      bool   `yaml:"enabled"`
	AdminEmail   string `yaml:"admin_email" validate:"omitempty,email"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port" validate:"gte=0,lte=65535"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	From         string `yaml:"from" validate:"omitempty,email"`
}

type MEmailConfig struct {
	CompanyName   string `yaml:"company_name" validate:"required"`
	SubjectPrefix string `yaml:"subject_prefix"`
	WebsiteURL    string `yaml:"website_url" validate:"omitempty,url"`
}
