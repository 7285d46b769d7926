package web

const faviconTag = `<link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>🚕</text></svg>">`

const baseStyle = `
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #12121c; color: #eee; min-height: 100vh; }
  .card { background: #1c1c2b; border-radius: 14px; padding: 18px; }
  h1 { color: #aeea00; font-size: 22px; }
  h2 { font-size: 15px; color: #aaa; margin-bottom: 12px; text-transform: uppercase; letter-spacing: .05em; }
  .btn { padding: 10px 16px; border: none; border-radius: 8px; background: #673ab7; color: #fff; font-size: 14px; font-weight: bold; cursor: pointer; }
  .btn:hover { opacity: 0.9; }
  .btn.secondary { background: #2c2c40; }
  input, select { padding: 8px; border: 1px solid #333; border-radius: 8px; background: #24243a; color: #eee; font-size: 14px; outline: none; }
  input:focus, select:focus { border-color: #aeea00; }
  .muted { color: #888; font-size: 13px; }
`

const loginHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Jaxi Taxi</title>
` + faviconTag + `
<style>` + baseStyle + `
  body { display: flex; align-items: center; justify-content: center; }
  .login-box { width: 340px; padding: 36px; }
  h1 { text-align: center; margin-bottom: 26px; }
  .field { margin-bottom: 18px; }
  label { display: block; margin-bottom: 6px; font-size: 14px; color: #aaa; }
  input { width: 100%; padding: 12px; font-size: 16px; }
  .btn { width: 100%; padding: 14px; font-size: 16px; }
  .error { color: #ff5370; text-align: center; margin-top: 14px; font-size: 14px; display: none; }
</style>
</head>
<body>
<div class="card login-box">
  <h1>🚕 Jaxi Taxi</h1>
  <form id="loginForm">
    <div class="field">
      <label>Username</label>
      <input type="text" name="username" autocomplete="username" required>
    </div>
    <div class="field">
      <label>Password</label>
      <input type="password" name="password" autocomplete="current-password" required>
    </div>
    <button type="submit" class="btn">Log in</button>
    <div class="error" id="error">Invalid username or password</div>
  </form>
</div>
<script>
document.getElementById('loginForm').onsubmit = async function(e) {
  e.preventDefault();
  var res = await fetch('/api/login', { method: 'POST', body: new URLSearchParams(new FormData(e.target)) });
  if (res.ok) {
    window.location.href = '/';
  } else {
    document.getElementById('error').style.display = 'block';
  }
};
</script>
</body>
</html>`

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Jaxi Taxi</title>
` + faviconTag + `
<style>` + baseStyle + `
  #root { transform-origin: top left; }
  header { display: flex; justify-content: space-between; align-items: center; padding: 18px 24px; }
  .badge { font-size: 12px; padding: 4px 10px; border-radius: 99px; background: #2c2c40; color: #aaa; }
  .badge.ok { background: #1b5e20; color: #c8e6c9; }
  .badge.err { background: #7f1d1d; color: #fecaca; }
  main { display: grid; grid-template-columns: 2fr 1fr; gap: 18px; padding: 0 24px 24px; }
  @media (max-width: 900px) { main { grid-template-columns: 1fr; } }
  .stack > * + * { margin-top: 18px; }
  .now { font-size: 20px; font-weight: bold; }
  .controls { display: flex; gap: 10px; margin-top: 14px; align-items: center; }
  audio { width: 100%; margin-top: 12px; }
  .strip { height: 90px; border-radius: 12px; margin: 8px 0 14px; background: linear-gradient(90deg, var(--c1, #333), var(--c2, #111)); opacity: var(--bri, 0.8); }
  .effect-static { }
  .effect-pulse { animation: pulse calc(2.2s - var(--speed, 0.5) * 1.8s) ease-in-out infinite; }
  .effect-strobe, .effect-lightning { animation: flash calc(1.2s - var(--speed, 0.5) * 1s) steps(2) infinite; }
  .effect-meteor, .effect-scan, .effect-chase-random { background-size: 200% 100%; animation: slide calc(4s - var(--speed, 0.5) * 3s) linear infinite; }
  .effect-rainbow { background: linear-gradient(90deg, red, orange, yellow, lime, cyan, blue, magenta, red); background-size: 200% 100%; animation: slide 4s linear infinite; }
  .effect-fire-flicker { animation: flicker 0.4s ease-in-out infinite alternate; }
  .effect-ripple { animation: pulse 3s ease-in-out infinite; }
  @keyframes pulse { 50% { filter: brightness(0.45); } }
  @keyframes flash { 50% { filter: brightness(0.1); } }
  @keyframes slide { to { background-position: -200% 0; } }
  @keyframes flicker { to { filter: brightness(0.7) saturate(1.3); } }
  .kv { display: grid; grid-template-columns: auto 1fr; gap: 4px 14px; font-size: 14px; }
  .kv span:nth-child(odd) { color: #888; }
  .swatch { display: inline-block; width: 12px; height: 12px; border-radius: 3px; vertical-align: middle; margin-right: 6px; }
  ul.tracks { list-style: none; max-height: 320px; overflow-y: auto; }
  ul.tracks li { padding: 8px 10px; border-radius: 8px; cursor: pointer; display: flex; justify-content: space-between; }
  ul.tracks li:hover { background: #24243a; }
  ul.tracks li.active { background: #673ab7; }
  .row { display: flex; justify-content: space-between; align-items: center; margin-bottom: 12px; gap: 10px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  td, th { padding: 6px 4px; text-align: left; border-bottom: 1px solid #2c2c40; }
  a { color: #aeea00; }
</style>
</head>
<body>
<div id="root">
<header>
  <h1>🚕 Jaxi Taxi</h1>
  <div style="display:flex;gap:10px;align-items:center;">
    <span class="badge" id="aiBadge">AI idle</span>
    <span class="badge" id="deviceBadge">device</span>
    <a href="/api/logout" class="muted">log out</a>
  </div>
</header>
<main>
  <div class="stack">
    <div class="card">
      <h2>Now playing</h2>
      <div class="now" id="title">No track</div>
      <div class="muted" id="artist"></div>
      <audio id="audio" controls></audio>
      <div class="controls">
        <button class="btn secondary" onclick="move('prev')">⏮ Prev</button>
        <button class="btn" onclick="move('next')">Next ⏭</button>
        <button class="btn secondary" onclick="move('analyze')">✨ Re-analyze</button>
      </div>
    </div>
    <div class="card">
      <h2>Lighting</h2>
      <div class="strip" id="strip"></div>
      <div class="kv" id="lighting"></div>
    </div>
    <div class="card">
      <h2>History</h2>
      <table><thead><tr><th>Time</th><th>Track</th><th>Source</th><th>Effect</th><th>Device</th></tr></thead><tbody id="history"></tbody></table>
    </div>
  </div>
  <div class="stack">
    <div class="card">
      <h2>Playlist</h2>
      <ul class="tracks" id="tracks"></ul>
    </div>
    <div class="card">
      <h2>Settings</h2>
      <div class="row"><label>Volume</label><input type="range" id="volume" min="0" max="1" step="0.05"></div>
      <div class="row"><label>Default effect</label><select id="defaultEffect"></select></div>
      <div class="row"><label>UI scale</label><input type="range" id="uiScale" min="0.5" max="2" step="0.05"></div>
    </div>
    <div class="card">
      <h2>Show logs</h2>
      <ul class="tracks" id="logs"></ul>
    </div>
  </div>
</main>
</div>
<script>
var audio = document.getElementById('audio');
var currentFile = null;
var settings = null;

async function api(path, opts) {
  var res = await fetch(path, opts);
  if (res.status === 401) { window.location.href = '/login'; return null; }
  return res.json();
}

function esc(s) {
  var d = document.createElement('div');
  d.textContent = s == null ? '' : String(s);
  return d.innerHTML;
}

async function move(action) {
  await api('/api/' + action, { method: 'POST' });
  refresh();
}

async function select(i) {
  await api('/api/select?index=' + i, { method: 'POST' });
  refresh();
}

function fmtDur(sec) {
  if (!sec) return '';
  var m = Math.floor(sec / 60), s = Math.round(sec % 60);
  return m + ':' + (s < 10 ? '0' : '') + s;
}

function renderState(st) {
  var ai = document.getElementById('aiBadge');
  ai.textContent = st.analyzing ? 'AI analyzing…' : (st.source === 'fallback' ? 'AI fallback' : 'AI ready');
  ai.className = 'badge' + (st.analyzing ? '' : (st.source === 'fallback' ? ' err' : ' ok'));
  if (st.error) ai.title = st.error;

  if (st.track) {
    document.getElementById('title').textContent = st.track.title;
    document.getElementById('artist').textContent = st.track.artist || '';
    if (currentFile !== st.track.file) {
      currentFile = st.track.file;
      audio.src = '/audio/' + encodeURIComponent(st.track.file);
      audio.play().catch(function() {});
    }
  }

  var strip = document.getElementById('strip');
  var s = st.suggestion;
  strip.className = 'strip ' + st.preview_class;
  if (s) {
    strip.style.setProperty('--c1', s.primaryColor || '#FFFFFF');
    strip.style.setProperty('--c2', s.secondaryColor || '#000000');
    strip.style.setProperty('--bri', Math.max(0.15, s.intensity || 0.8));
    strip.style.setProperty('--speed', (s.speed || 128) / 255);
    document.getElementById('lighting').innerHTML =
      '<span>Effect</span><span>' + esc(s.effect) + (st.command ? ' (fx ' + st.command.seg[0].fx + ')' : '') + '</span>' +
      '<span>Primary</span><span><i class="swatch" style="background:' + esc(s.primaryColor) + '"></i>' + esc(s.primaryColor) + '</span>' +
      '<span>Secondary</span><span><i class="swatch" style="background:' + esc(s.secondaryColor) + '"></i>' + esc(s.secondaryColor) + '</span>' +
      '<span>Brightness</span><span>' + (st.command ? st.command.bri : '') + ' / 255</span>' +
      '<span>Speed</span><span>' + s.speed + '</span>' +
      '<span>Effect intensity</span><span>' + s.effectIntensity + '</span>' +
      '<span>Device</span><span>' + esc(st.device) + (st.device_error ? ' – ' + esc(st.device_error) : '') + '</span>';
  }

  if (!settings) applySettings(st.settings);
}

function applySettings(s) {
  settings = s;
  document.getElementById('volume').value = s.volume;
  document.getElementById('uiScale').value = s.uiScale;
  document.getElementById('defaultEffect').value = s.defaultEffect;
  audio.volume = s.volume;
  var root = document.getElementById('root');
  root.style.transform = 'scale(' + s.uiScale + ')';
  root.style.width = (100 / s.uiScale) + '%';
}

async function saveSettings() {
  var body = {
    volume: parseFloat(document.getElementById('volume').value),
    defaultEffect: document.getElementById('defaultEffect').value,
    uiScale: parseFloat(document.getElementById('uiScale').value)
  };
  var saved = await api('/api/settings', { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: JSON.stringify(body) });
  if (saved && !saved.error) applySettings(saved);
}

async function loadPlaylist() {
  var pl = await api('/api/playlist');
  if (!pl) return;
  document.getElementById('tracks').innerHTML = (pl.tracks || []).map(function(t) {
    return '<li class="' + (t.index === pl.current ? 'active' : '') + '" onclick="select(' + t.index + ')">' +
      '<span>' + esc(t.artist ? t.artist + ' – ' + t.title : t.title) + '</span><span class="muted">' + fmtDur(t.duration) + '</span></li>';
  }).join('') || '<li class="muted">No audio files</li>';
}

async function loadHistory() {
  var h = await api('/api/history?limit=15');
  if (!h) return;
  document.getElementById('history').innerHTML = h.map(function(e) {
    return '<tr><td>' + new Date(e.time).toLocaleTimeString() + '</td><td>' + esc(e.track) + '</td><td>' + esc(e.source) +
      '</td><td>' + esc(e.suggestion.effect) + ' (' + e.fx + ')</td><td>' + esc(e.device) + '</td></tr>';
  }).join('');
}

async function loadLogs() {
  var files = await api('/api/logs');
  if (!files) return;
  document.getElementById('logs').innerHTML = files.map(function(f) {
    return '<li><a href="/logs/' + encodeURIComponent(f.name) + '">' + esc(f.name) + '</a><span class="muted">' + f.size + ' B</span></li>';
  }).join('') || '<li class="muted">No logs yet</li>';
}

async function loadDevice() {
  var d = await api('/api/device');
  if (!d) return;
  var b = document.getElementById('deviceBadge');
  if (!d.enabled) { b.textContent = 'no device'; b.className = 'badge'; return; }
  if (d.error) { b.textContent = 'device offline'; b.className = 'badge err'; b.title = d.error; return; }
  b.textContent = (d.info && d.info.name ? d.info.name : 'WLED') + (d.info && d.info.ver ? ' v' + d.info.ver : '');
  b.className = 'badge ok';
}

async function loadEffects() {
  var fx = await api('/api/effects');
  if (!fx) return;
  document.getElementById('defaultEffect').innerHTML = fx.featured.map(function(n) {
    return '<option value="' + esc(n) + '">' + esc(n) + '</option>';
  }).join('');
}

async function refresh() {
  var st = await api('/api/state');
  if (st) renderState(st);
  loadPlaylist();
  loadHistory();
}

audio.addEventListener('ended', function() { move('next'); });
['volume', 'defaultEffect', 'uiScale'].forEach(function(id) {
  document.getElementById(id).addEventListener('change', saveSettings);
});

loadEffects().then(refresh);
loadDevice();
loadLogs();
setInterval(refresh, 1500);
setInterval(loadDevice, 15000);
setInterval(loadLogs, 15000);
</script>
</body>
</html>`
