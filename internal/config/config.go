// Package config provides configuration management for the extraction
// service, including bcrypt-hashed admin credential storage and AES-GCM
// helpers for secret values.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/metakeule/fmtdate"
	"golang.org/x/crypto/bcrypt"
)

// encryptionKeyEnvVar is the environment variable name for the AES encryption key.
const encryptionKeyEnvVar = "DOCSCRIBE_ENCRYPTION_KEY"

// encryptedPrefix marks a value as AES-encrypted in the config file.
const encryptedPrefix = "enc:"

// Config holds all system configuration.
type Config struct {
	Server Server  `json:"server"`
	Limits Limits  `json:"limits"`
	Log    Logging `json:"logging"`
	Admin  Admin   `json:"admin"`
}

// Server holds the optional HTTP conversion endpoint's bind configuration.
type Server struct {
	Bind    string `json:"bind"`
	Port    int    `json:"port"`
	SSLCert string `json:"ssl_cert"`
	SSLKey  string `json:"ssl_key"`
}

// Limits holds resource caps for decoding untrusted documents. Of these,
// only MaxUploadSizeMB is applied (by the HTTP endpoint in main.go); the
// decoders do not read the other fields and use their own built-in caps.
type Limits struct {
	MaxArchiveEntryBytes int64 `json:"max_archive_entry_bytes"` // per-entry decompressed size cap
	MaxArchiveEntries    int   `json:"max_archive_entries"`     // zip entry count cap
	MaxGridCells         int   `json:"max_grid_cells"`          // rows*cols cap per spreadsheet
	MaxRecords           int   `json:"max_records"`             // BIFF8 record count cap
	MaxUploadSizeMB      int   `json:"max_upload_size_mb"`
}

// Logging holds rotation settings for the error logger in
// internal/errlog. main.go does not pass them to errlog, which keeps
// its built-in 100 MB / 5-archive defaults.
type Logging struct {
	RotationSizeMB int `json:"rotation_size_mb"`
	MaxBackups     int `json:"max_backups"`
}

// Admin holds credentials for the optional HTTP conversion endpoint.
type Admin struct {
	Username        string `json:"username"`
	PasswordHash    string `json:"password_hash"`
	LoginRoute      string `json:"login_route"`
	PasswordSetAt   string `json:"password_set_at"` // "2006-01-02 15:04:05", set by SetAdminPassword
}

const auditTimestampLayout = "YYYY-MM-DD hh:mm:ss"

// Manager manages loading, saving, and updating configuration.
type Manager struct {
	configPath    string
	config        *Config
	mu            sync.RWMutex
	encryptionKey []byte // 32-byte AES-256 key, used for any "enc:"-prefixed secret field
}

// NewManager creates a new Manager for the given config file path.
// The AES encryption key is read from the DOCSCRIBE_ENCRYPTION_KEY
// environment variable; if unset, a random key is generated and persisted.
func NewManager(configPath string) (*Manager, error) {
	key, err := getOrCreateEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("encryption key error: %w", err)
	}
	return &Manager{configPath: configPath, encryptionKey: key}, nil
}

// NewManagerWithKey creates a Manager with an explicit encryption key (for testing).
func NewManagerWithKey(configPath string, key []byte) (*Manager, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	return &Manager{configPath: configPath, encryptionKey: key}, nil
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: Server{Bind: "127.0.0.1", Port: 8088},
		Limits: Limits{
			MaxArchiveEntryBytes: 256 << 20,
			MaxArchiveEntries:    10000,
			MaxGridCells:         5_000_000,
			MaxRecords:           2_000_000,
			MaxUploadSizeMB:      100,
		},
		Log: Logging{RotationSizeMB: 100, MaxBackups: 5},
		Admin: Admin{
			LoginRoute: "/admin",
		},
	}
}

// Load reads the config file from disk. If the file does not exist, it
// initializes with default values and saves.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			m.config = DefaultConfig()
			return m.saveLocked()
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	m.applyDefaults(&cfg)
	m.config = &cfg
	return nil
}

// Save writes the current config to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if m.config == nil {
		return errors.New("no config loaded")
	}
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return nil
	}
	c := *m.config
	return &c
}

// SetAdminPassword hashes the password with bcrypt and stores it.
func (m *Manager) SetAdminPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = DefaultConfig()
	}
	m.config.Admin.PasswordHash = string(hash)
	m.config.Admin.PasswordSetAt = fmtdate.Format(auditTimestampLayout, time.Now())
	return m.saveLocked()
}

// CheckAdminPassword verifies a password against the stored bcrypt hash.
func (m *Manager) CheckAdminPassword(password string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil || m.config.Admin.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(m.config.Admin.PasswordHash), []byte(password)) == nil
}

func (m *Manager) applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = defaults.Server.Bind
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Limits.MaxArchiveEntryBytes == 0 {
		cfg.Limits.MaxArchiveEntryBytes = defaults.Limits.MaxArchiveEntryBytes
	}
	if cfg.Limits.MaxArchiveEntries == 0 {
		cfg.Limits.MaxArchiveEntries = defaults.Limits.MaxArchiveEntries
	}
	if cfg.Limits.MaxGridCells == 0 {
		cfg.Limits.MaxGridCells = defaults.Limits.MaxGridCells
	}
	if cfg.Limits.MaxRecords == 0 {
		cfg.Limits.MaxRecords = defaults.Limits.MaxRecords
	}
	if cfg.Limits.MaxUploadSizeMB == 0 {
		cfg.Limits.MaxUploadSizeMB = defaults.Limits.MaxUploadSizeMB
	}
	if cfg.Log.RotationSizeMB == 0 {
		cfg.Log.RotationSizeMB = defaults.Log.RotationSizeMB
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = defaults.Log.MaxBackups
	}
	if cfg.Admin.LoginRoute == "" {
		cfg.Admin.LoginRoute = defaults.Admin.LoginRoute
	}
}

// --- AES-GCM encryption helpers, kept for any future "enc:"-prefixed secret field ---

func (m *Manager) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(m.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

func (m *Manager) decrypt(ciphertextHex string) (string, error) {
	if ciphertextHex == "" {
		return "", nil
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("hex decode: %w", err)
	}
	block, err := aes.NewCipher(m.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptSecret encrypts a value and adds the "enc:" prefix. Empty strings
// are returned as-is.
func (m *Manager) EncryptSecret(value string) string {
	if value == "" {
		return ""
	}
	encrypted, err := m.encrypt(value)
	if err != nil {
		return value
	}
	return encryptedPrefix + encrypted
}

// DecryptSecret decrypts a value if it has the "enc:" prefix.
func (m *Manager) DecryptSecret(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, encryptedPrefix) {
		return m.decrypt(value[len(encryptedPrefix):])
	}
	return value, nil
}

func getOrCreateEncryptionKey() ([]byte, error) {
	keyHex := os.Getenv(encryptionKeyEnvVar)
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
		}
		return key, nil
	}

	keyFile := "./data/encryption.key"
	if data, err := os.ReadFile(keyFile); err == nil {
		keyHex = strings.TrimSpace(string(data))
		if key, err := hex.DecodeString(keyHex); err == nil && len(key) == 32 {
			os.Chmod(keyFile, 0600)
			return key, nil
		}
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	keyHex = hex.EncodeToString(key)
	os.MkdirAll("./data", 0700)
	if err := os.WriteFile(keyFile, []byte(keyHex+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("save encryption key: %w", err)
	}
	return key, nil
}
