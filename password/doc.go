// Package password hashes credentials with Argon2id and keeps the small in-memory account
// directory behind the demo sign-in endpoint of cmd/throttled.
//
// # Output format
//
// Hashes are encoded in PHC string format with unpadded base64:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters; [Directory]
// upgrades them after a successful sign-in.
//
// # What this package must NOT do
//
//   - Throttle. Failed attempts are counted by goThrottle.Engine.GuardLogin.
//   - Distinguish unknown accounts from wrong passwords in its errors.
//   - Log plaintext passwords.
package password
