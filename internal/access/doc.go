// Package access decides whether an authenticated principal may proceed with
// a request. Decisions are unanimous: every voter must grant. A deny or an
// abstention from any voter denies the request.
package access
