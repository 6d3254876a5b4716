// Package profile resolves which Profile applies to a request.
//
// Resolution is an ordered cascade of lookups against the profile store, most specific
// first: the user's own profile for the client signature, the system profile for the
// signature, then the user's and the system's profile for a name derived by the
// ProfileMapper. The first hit wins. When every step misses the result is unmapped,
// which is a normal outcome and not an error.
package profile
