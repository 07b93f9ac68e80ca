// Package utils provides type conversion helpers for loosely typed values coming from
// source databases and the Moodle web service, plus password generation for new accounts.
package utils
