// Package sanitizer provides input normalization functions for catalog and booking data.
//
// All normalization functions are idempotent - applying them multiple times produces
// the same result. Invalid input yields empty strings or empty slices rather than errors;
// validation runs afterwards and rejects what normalization could not repair.
//
// Normalization includes:
//   - Slugs: lowercase letters, digits and single hyphens - "Room 3" becomes "room-3"
//   - Tags: lowercase letters, digits and single underscores - "Video Conf" becomes "video_conf"
//   - Text: collapse whitespace, drop control characters, trim
//   - Slices: remove duplicates and empty values after normalization
//   - Numbers: clamp to valid ranges
package sanitizer
