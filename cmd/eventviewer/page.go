package main

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Transcript events</title>
<style>
body { font-family: monospace; margin: 2em; }
.review { color: #b00020; }
</style>
</head>
<body>
<h1>Transcript events</h1>
<p>Tenant filter: <input id="tenant" placeholder="all"> <button id="connect">connect</button></p>
<ul id="events"></ul>
<script>
let ws;
document.getElementById("connect").onclick = () => {
  if (ws) ws.close();
  const tenant = document.getElementById("tenant").value;
  const qs = tenant ? "?tenant=" + encodeURIComponent(tenant) : "";
  ws = new WebSocket("ws://" + location.host + "/ws" + qs);
  ws.onmessage = (msg) => {
    const ev = JSON.parse(msg.data);
    const li = document.createElement("li");
    if ((ev.tags || []).includes("review_required")) li.className = "review";
    li.textContent = new Date(ev.timestamp).toISOString() + " " + ev.eventType + " " +
      ev.tenantId + "/" + ev.conversationId + " score=" + ev.sentimentScore +
      " tags=" + (ev.tags || []).join(",");
    document.getElementById("events").prepend(li);
  };
};
</script>
</body>
</html>
`
