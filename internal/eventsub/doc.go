// Package eventsub receives Twitch EventSub webhook deliveries. Verified
// stream.online and stream.offline notifications join and part the
// broadcaster's chat channel.
package eventsub
