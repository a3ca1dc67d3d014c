// Package accumulator reconciles the unordered replies that describe a joined
// channel (ROOMSTATE, USERSTATE, the NAMES list and the command, moderator and
// VIP notices) into one domain.Channel.
package accumulator
