package repository

const (
	createAssetQuery = `INSERT INTO video_assets (user_id, file_name, video_path, thumbnail_path, width, height, duration_seconds, file_size_bytes)
					VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
					RETURNING asset_id, user_id, file_name, video_path, COALESCE(thumbnail_path, '') AS thumbnail_path, width, height, duration_seconds, file_size_bytes, created_at`
	getAssetByIDQuery = `SELECT asset_id, user_id, file_name, video_path, COALESCE(thumbnail_path, '') AS thumbnail_path, width, height, duration_seconds, file_size_bytes, created_at
					FROM video_assets WHERE asset_id = $1`
	getAssetsByUserIDQuery = `SELECT asset_id, user_id, file_name, video_path, COALESCE(thumbnail_path, '') AS thumbnail_path, width, height, duration_seconds, file_size_bytes, created_at
					FROM video_assets WHERE user_id = $1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`
	getTotalAssetsByUserIDQuery = `SELECT COUNT(asset_id) FROM video_assets WHERE user_id = $1`
	deleteAssetQuery            = `DELETE FROM video_assets WHERE asset_id = $1 AND user_id = $2`
)
