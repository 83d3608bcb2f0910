package config

type Config struct {
	BaseURL  string
	HttpPort int
	Db       struct {
		Dsn         string
		Automigrate bool
	}
	Jwt struct {
		SecretKey string
	}
	Notifications struct {
		Email string
	}
	Smtp struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	FileUploader struct {
		CloudName string
		ApiKey    string
		ApiSecret string
	}
	KafkaServers string
	RedisServer  string

	// Payment gateway collaborator. The secret is shared with the gateway
	// and used to check callback signatures.
	Gateway struct {
		BaseURL string
		Secret  string
	}

	// Bank transfer collaborator for withdrawal payouts.
	BankTransfer struct {
		BaseURL string
	}

	// All amounts are in minor units (paise).
	Topup struct {
		MinAmount int64
	}
	Withdrawal struct {
		MinAmount          int64
		MaxAmount          int64
		CommissionRate     float64
		AutoApproveCeiling int64
	}
	Pricing struct {
		Brackets string
		FlatMax  int64
	}
}
