// Package irc implements the wire codec for IRCv3-tagged chat lines.
//
// Parse splits a raw line into tags, prefix, command and parameters; Message.String
// is its inverse. The parser never fails: absent parts are reported as absent.
// Tag values are escaped with the IRCv3 table (space, semicolon, backslash).
package irc
