package testutil

// Test key material for use in tests only. 32+ bytes each.
const (
	TestSigningKey = "test-signing-key-1234567890123456"
	TestJWTSecret  = "test-jwt-secret-abcdefghijklmnopqrstu"
)
