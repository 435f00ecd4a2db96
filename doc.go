/*
Package courier dispatches webhook deliveries from messaging platforms to handler logic
running against durable per-conversation sessions.

A Bot binds one Connector (WhatsApp Business, Telegram, Slack, ...) to a session
Manager and an action chain. For every delivery it lets the Connector answer
handshakes or reject the request, maps the body into platform events, and runs the
chain once per event while holding that event's session exclusively.

# Guarantees

  - For a fixed session key, load, handle and save never interleave, on one replica
    or (with a distributed locker) across replicas.
  - Events of one delivery sharing a key run in delivery order; distinct keys run
    concurrently, bounded by WithMaxConcurrency.
  - The session is saved after the handler runs, even when it failed.
  - Dispatch is detached from the request context: a client hanging up does not
    abort a half-finished handler.

# Usage

	conn, err := whatsapp.New(
		whatsapp.WithCredentials(phoneNumberID, accessToken),
		whatsapp.WithVerifyToken(verifyToken),
	)
	if err != nil {
		log.Fatal(err)
	}

	r := router.NewRouter(
		whatsapp.Text(func(ctx context.Context, c *handler.Context) handler.Result {
			if err := c.SendText(ctx, "You said: "+c.Event().Text()); err != nil {
				return handler.Fail(err)
			}
			return handler.Done()
		}),
	)

	bot := courier.New(conn, courier.WithChannel("whatsapp"))
	bot.OnEvent(r.Action())

	resp, err := bot.Handle(ctx, req)
*/
package courier
