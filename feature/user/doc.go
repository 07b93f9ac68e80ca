// Package user creates source user accounts that are missing on the target.
//
// Users are matched by username. Existing accounts are counted and left alone; the target may
// fill in a default authentication method and a random password for new ones.
package user
