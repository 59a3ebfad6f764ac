// Package secure holds secret values in memory that is encrypted at rest.
//
// String wraps a memguard enclave. The plaintext only exists in a locked
// buffer for the duration of Expose, and every formatting path (fmt verbs,
// JSON, text marshalling) prints a fixed placeholder instead of the value.
//
//	v := secure.NewString("hunter2")
//	defer v.Destroy()
//
//	fmt.Println(v) // [REDACTED]
//	plain, err := v.Expose()
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When the limit is too
// low memguard still encrypts the enclave but cannot pin the pages.
package secure
