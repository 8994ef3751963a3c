package harvest

// In-page JavaScript used to read the storage surfaces.
// Isolated here so the extraction flow stays readable. Every script is a
// self-invoking expression returning a JSON-compatible object; all values
// are coerced to strings in-page so the Go side never sees a richer schema.

const localStorageScript = `(() => {
	const items = {};
	for (let i = 0; i < localStorage.length; i++) {
		const key = localStorage.key(i);
		items[key] = localStorage.getItem(key);
	}
	return items;
})()`

const sessionStorageScript = `(() => {
	const items = {};
	for (let i = 0; i < sessionStorage.length; i++) {
		const key = sessionStorage.key(i);
		items[key] = sessionStorage.getItem(key);
	}
	return items;
})()`

// Meta tag names are matched case-insensitively (the "i" attribute flag):
// names like X-CSRF-Token must match the csrf filter.
const metaTagScript = `(() => {
	const out = {};
	const metas = document.querySelectorAll('meta[name*="token" i], meta[name*="csrf" i]');
	metas.forEach(meta => {
		out[meta.getAttribute('name')] = meta.getAttribute('content') || '';
	});
	return out;
})()`

// scriptVariableNames is the fixed set of global variable names probed on
// the page. Deliberately short: anything beyond these common conventions
// is too noisy to probe blindly.
const scriptVariableScript = `(() => {
	const out = {};
	const names = ['token', 'authToken', 'sessionToken', 'csrfToken', 'apiToken', 'accessToken'];
	names.forEach(name => {
		const v = window[name];
		if (v) {
			out[name] = typeof v === 'string' ? v : JSON.stringify(v);
		}
	});
	return out;
})()`
